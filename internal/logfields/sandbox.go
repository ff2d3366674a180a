package logfields

import "go.uber.org/zap"

func Container(val string) zap.Field {
	return zap.String("sandbox.container", val)
}

func Image(val string) zap.Field {
	return zap.String("sandbox.image", val)
}

func Operation(val string) zap.Field {
	return zap.String("operation", val)
}
