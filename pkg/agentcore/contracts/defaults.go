package contracts

import "strings"

// defaultToolAllowlist is the built-in set of tool names considered safe
// enough to run with no contract configured at all. It backstops
// deployments that haven't authored any contracts yet; any configured
// contract set takes priority over it.
var defaultToolAllowlist = []string{"exec", "read_file", "write_file", "list_dir", "edit_file", "append_file"}

// DefaultContractSet returns a ContractSet that allows only
// defaultToolAllowlist tools and denies everything else, for deployments
// running with no authored contracts. Real deployments should configure
// their own contracts.ContractSet instead of relying on this.
func DefaultContractSet() ContractSet {
	contracts := make([]Contract, 0, len(defaultToolAllowlist)+1)
	for _, name := range defaultToolAllowlist {
		contracts = append(contracts, Contract{
			Name:     "default-allow-" + name,
			Trigger:  Trigger{Kind: TriggerTool, Tool: name},
			Action:   ActionAllow,
			Enabled:  true,
			Priority: 0,
		})
	}
	contracts = append(contracts, Contract{
		Name:     "default-deny-unlisted",
		Trigger:  Trigger{Kind: TriggerAnyTool},
		Action:   ActionDeny,
		Message:  "tool not in the default allowlist: " + strings.Join(defaultToolAllowlist, ", "),
		Enabled:  true,
		Priority: -100,
	})
	return ContractSet{Contracts: contracts}
}
