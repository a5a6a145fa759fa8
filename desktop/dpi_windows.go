//go:build windows

package desktop

import "golang.org/x/sys/windows"

var procSetProcessDPIAware = windows.NewLazySystemDLL("user32.dll").NewProc("SetProcessDPIAware")

func enableDPIAwareness() error {
	if err := procSetProcessDPIAware.Find(); err != nil {
		return err
	}
	if ok, _, err := procSetProcessDPIAware.Call(); ok == 0 {
		return err
	}
	return nil
}
