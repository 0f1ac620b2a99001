package client

import (
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Signals are the coarse, non-sensitive traits a device id is derived
// from. None of them is secret and the resulting id is a correlation
// key only, never an authorization credential on its own.
type Signals struct {
	UserAgent   string
	Language    string
	ScreenSize  string
	TimezoneOff int
	CPUCount    int
	Platform    string
}

// HostSignals collects signals from the running process. In a browser
// these would come from navigator and screen; here the process
// environment stands in for them.
func HostSignals() Signals {
	_, offset := time.Now().Zone()
	return Signals{
		UserAgent:   "access-client/" + runtime.Version(),
		Language:    "und",
		ScreenSize:  "0x0",
		TimezoneOff: -offset / 60,
		CPUCount:    runtime.NumCPU(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// FingerprintDevice derives a stable device id from the given signals.
// The hash is a weak non-cryptographic rolling hash, deliberately kept
// that way: the id only correlates requests from one device.
func FingerprintDevice(sig Signals) string {
	cpu := "unknown"
	if sig.CPUCount > 0 {
		cpu = strconv.Itoa(sig.CPUCount)
	}
	joined := strings.Join([]string{
		sig.UserAgent,
		sig.Language,
		sig.ScreenSize,
		strconv.Itoa(sig.TimezoneOff),
		cpu,
		sig.Platform,
	}, "|")
	return "dev_" + rollingHash(joined)
}

// rollingHash is the classic (h<<5)-h+c string hash over 32-bit
// arithmetic, rendered in base36.
func rollingHash(s string) string {
	var h int32
	for _, c := range s {
		h = (h << 5) - h + c
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
