//go:build !windows

package capture

func newPlatformSession(cfg Config) (Session, error) {
	return nil, ErrUnsupported
}

func queryPlatformCapabilities() HostCapabilities {
	return HostCapabilities{}
}
