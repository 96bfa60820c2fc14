package models

// ProtectionConfigKey is the database setting key holding the serialized
// protection configuration blob.
const ProtectionConfigKey = "protection_config"
