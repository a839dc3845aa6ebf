// Package config provides loading and environment overlay for pqueue
// configuration. Default() is the baseline; Load layers a JSON or YAML file
// over it and FromEnv layers PQUEUE_* variables over the result.
//
// Example:
//
//	_ = config.LoadDotEnv("")
//	cfg, err := config.Load("/etc/pqueue.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := config.FromEnv(&cfg); err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
