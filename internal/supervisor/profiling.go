package supervisor

import (
	pyroscope "github.com/grafana/pyroscope-go"

	"marketmaker/internal/errors"
)

// StartProfiling bootstraps continuous profiling the same way the
// reference stack's own WebSocket example does: a fixed profile-type set,
// tagged by application name and environment. The returned stopper is a
// no-op if profiling never started.
func StartProfiling(applicationName, serverAddress, env string) (func(), error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: applicationName,
		ServerAddress:   serverAddress,
		Tags: map[string]string{
			"env": env,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return func() {}, errors.Wrap(err, "start profiler")
	}
	return func() { _ = profiler.Stop() }, nil
}
