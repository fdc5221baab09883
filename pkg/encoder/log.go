package encoder

import "github.com/kataras/golog"

// logger is used by encoders created without Options.Logger.
var logger = golog.Child("[hwvideo-encoder]")
