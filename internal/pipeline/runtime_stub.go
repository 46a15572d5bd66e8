//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

func NewTransformer() (Transformer, error) {
	return stdlibTransformer{}, nil
}
