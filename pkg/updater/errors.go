package updater

import "errors"

// ErrNoImageLoaded is returned by UploadAll when no firmware image has
// been loaded into the store yet.
var ErrNoImageLoaded = errors.New("updater: no firmware image loaded")

// ErrRunInProgress is returned when a workflow is invoked while
// another one is still running.
var ErrRunInProgress = errors.New("updater: a workflow is already running")
