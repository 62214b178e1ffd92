// Package config handles loading and validating PMFlow Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with PMFLOW_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT signing secret should be supplied via PMFLOW_JWT_SECRET
//   - A missing or short secret fails validation and aborts startup
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
