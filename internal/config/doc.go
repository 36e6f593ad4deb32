// Package config provides configuration parsing for vharness.
//
// The configuration is stored in vharness.json, vharness.yaml or
// vharness.yml next to the tests that use it. A directory without one gets
// the defaults.
//
// # Configuration File Structure
//
//	dispatcher:
//	  queueSize: 512
//	log:
//	  level: debug
//	  format: json
//	markup:
//	  pretty: true
//	diff:
//	  ignoreAttributes: ["data-on-*", "id"]
//	metrics:
//	  enabled: true
//	  namespace: ui_tests
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h := harness.New(engine.New(), cfg.HarnessOptions(os.Stderr)...)
package config
