package lights

import "errors"

var (
	// ErrProviderUnavailable is returned by Provider.Initialize when the driver
	// or hardware is absent. The provider is skipped for the rest of the run.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrControlDenied is returned by Provider.RequestControl when another
	// process holds the hardware. It is retried on the next health check.
	ErrControlDenied = errors.New("control denied")

	// ErrInvalidPalette is returned for an empty or malformed palette.
	ErrInvalidPalette = errors.New("invalid palette")

	// ErrHardwareWrite wraps ApplyLights failures.
	ErrHardwareWrite = errors.New("hardware write failed")
)
