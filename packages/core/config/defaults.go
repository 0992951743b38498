package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEncoding:     "UTF-8",
		ConnectTimeout:      30000, // 30 seconds
		ReadTimeout:         30000, // 30 seconds
		FollowRedirects:     BoolPtr(true),
		MaxRedirects:        10,
		KeepCookieOnMissing: BoolPtr(false),
		SessionStore:        DefaultSessionStore,
		Verbose:             BoolPtr(false),
		NoColor:             BoolPtr(false),
	}
}

// DefaultSessionStore is the sqlite file holding named sessions, relative
// to the working directory.
const DefaultSessionStore = ".hitsession.db"

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.DefaultEncoding == defaults.DefaultEncoding &&
		c.ConnectTimeout == defaults.ConnectTimeout &&
		c.ReadTimeout == defaults.ReadTimeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetKeepCookieOnMissing() == defaults.GetKeepCookieOnMissing() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		c.SessionStore == defaults.SessionStore &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
