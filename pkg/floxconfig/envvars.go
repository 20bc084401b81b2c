// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package floxconfig

const envVarPrefix = "FLOX_"

const (
	// FloxHomeEnvVar
	// FLOX_HOME is the absolute path to the flox home directory
	FloxHomeEnvVar = envVarPrefix + "HOME"

	// LogLevelEnvVar
	// FLOX_LOG_LEVEL sets the log level for the resolver.
	// 	Default: info
	//  Possible values: info error warn debug
	LogLevelEnvVar = envVarPrefix + "LOG_LEVEL"

	// AllowInsecureRegistryEnvVar
	// FLOX_INSECURE_REGISTRY allows an insecure OCI registry to be used
	// when locking oci inputs (http instead of https)
	AllowInsecureRegistryEnvVar = envVarPrefix + "INSECURE_REGISTRY"
)
