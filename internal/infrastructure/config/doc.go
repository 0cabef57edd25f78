// Package config handles loading and validating HomeSync node configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker and network passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - mqtt.broker.insecure_skip_verify exists for proof-of-concept brokers only
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ID)
package config
