package rod

// WithStarter replaces Chrome with fake processes. start is called for
// every browser the manager brings up.
func WithStarter(start func() (pid int, stop func() error, err error)) ManagerOption {
	return func(bm *BrowserManager) {
		bm.start = func() (*session, error) {
			pid, stop, err := start()
			if err != nil {
				return nil, err
			}
			return &session{pid: pid, stop: stop}, nil
		}
	}
}
