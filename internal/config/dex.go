package config

// Dex defines network endpoints and defaults for decentralized execution.
type Dex struct {
	Chain         string  `yaml:"chain"` // e.g. "solana"
	RpcURL        string  `yaml:"rpc_url"`
	Commitment    string  `yaml:"commitment"`   // processed|confirmed|finalized
	JupiterBase   string  `yaml:"jupiter_base"` // https://api.jup.ag
	JupiterAPIKey string  `yaml:"jupiter_api_key"`
	JupiterRPS    float64 `yaml:"jupiter_rps"`
}

// Wallet stores the service signing key as a JSON array of secret-key bytes.
type Wallet struct {
	PrivateKey string `yaml:"private_key"`
}
