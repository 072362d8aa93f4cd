package launcher

import "errors"

// errSettingsInitTimeout is returned by initSettings when any worker's
// SETTINGS_INIT response times out; per spec §4.5 this is fatal and
// causes Run to tear the Supervisor down.
var errSettingsInitTimeout = errors.New("launcher: settings initialization timed out")
