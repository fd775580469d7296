//go:build windows

package main

import (
	"errors"

	"golang.org/x/sys/windows"
)

// instanceMutex is held for the life of the process.
var instanceMutex windows.Handle

// ensureSingleInstance stops a second relay from fighting the first for
// control of the same lights.
func ensureSingleInstance() error {
	name, err := windows.UTF16PtrFromString("Global\\AuraConnectSingleInstance")
	if err != nil {
		return err
	}
	h, err := windows.CreateMutex(nil, false, name)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return errors.New("auraconnect is already running")
	}
	if err != nil {
		return err
	}
	instanceMutex = h
	return nil
}
