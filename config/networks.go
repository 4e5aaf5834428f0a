package config

// Built-in network names.
const (
	NetworkDevelopment = "development"
	NetworkHecoTest    = "hecotest"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// builtinNetworks are the profiles known without any configuration. Profiles
// in the config file with the same name replace them.
var builtinNetworks = map[string]NetworkProfile{
	NetworkDevelopment: {
		CompContract: zeroAddress,
		CompoundLens: zeroAddress,
		Comptroller:  zeroAddress,
		HTT:          zeroAddress,
		Vote:         "0x44dcf1448d67c9f2352c54e565fcc8b4373b5151",
		Deposit:      zeroAddress,
		Borrow:       zeroAddress,
	},
	NetworkHecoTest: {
		CompContract: "0x9d81f4554e717f7054c1bfbb2f7c323389b116a5",
		CompoundLens: "0x46f27679e96cabecb6d20a0332f6aab19685e733",
		Comptroller:  "0xf0cb3d0424aaa3e63948d3f9ac964458bcff3597",
		HTT:          "0x4c4e7865c4483b836f94519d2b9d8766dd415065",
		Vote:         "0xd36a0ad934a1fc5bfaef73c3678410e446a468c3",
		Deposit:      "0xd5bc49328ff7c50f5b725887cd22f08587fa32eb",
		Borrow:       "0x730ee9156cece591191a1e951beef6e0811f5960",
	},
}

// Profile returns the profile of the selected network.
func (c *Config) Profile() (NetworkProfile, bool) {
	if profile, ok := c.Networks[c.Network]; ok {
		return profile, true
	}
	profile, ok := builtinNetworks[c.Network]
	return profile, ok
}

// DevMode reports whether development-only routes are enabled.
func (c *Config) DevMode() bool {
	return c.Network == NetworkDevelopment
}
