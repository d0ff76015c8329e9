// Package config loads and validates the root gatekit configuration.
//
// Configuration layers, lowest to highest precedence:
//
//  1. built-in defaults (ApplyDefaults on every section)
//  2. a YAML config file (explicit path or standard search locations)
//  3. a .env file loaded into the process environment
//  4. GATEKIT_-prefixed environment variables
//
// Environment variables map to nested keys by underscore splitting, e.g.
// GATEKIT_GATEWAY_QUEUE_CAPACITY overrides gateway.queue_capacity.
package config
