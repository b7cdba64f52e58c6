// platform.go collects the tags describing the SDK, runtime, host, and process.

package gatey

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

const (
	// SDKName identifies this SDK in event tags.
	SDKName = "gatey.go.official"

	// SDKVersion is the version reported in event tags.
	SDKVersion = "0.3.0"
)

// processStart approximates the process start time. Package variables are
// initialized before main runs.
var processStart = time.Now()

// defaultTags returns the process-level tags enabled by the flags.
func defaultTags(includeRuntime, includePlatform, includeSDK bool) map[string]string {
	tags := make(map[string]string)

	if includeSDK {
		tags["sdk.name"] = SDKName
		tags["sdk.version"] = SDKVersion
	}

	if includeRuntime {
		tags["runtime.name"] = "go"
		tags["runtime.version"] = runtime.Version()
		tags["runtime.compiler"] = runtime.Compiler
	}

	if includePlatform {
		hostname, _ := os.Hostname() // Ignore error, empty hostname is acceptable
		tags["platform.os"] = runtime.GOOS
		tags["platform.arch"] = runtime.GOARCH
		tags["platform.node"] = hostname
		tags["platform.num_cpu"] = strconv.Itoa(runtime.NumCPU())
	}

	return tags
}

// processTags captures process state at the current moment. Uptime is
// measured from startTime, which is processStart outside tests.
func processTags(startTime time.Time) map[string]string {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptimeMs := time.Since(startTime).Milliseconds()
	if uptimeMs < 0 {
		uptimeMs = 0 // Clamp to 0 if start time is in the future
	}

	return map[string]string{
		"process.memory_bytes": strconv.FormatUint(memStats.Alloc, 10),
		"process.goroutines":   strconv.Itoa(runtime.NumGoroutine()),
		"process.uptime_ms":    strconv.FormatInt(uptimeMs, 10),
	}
}
