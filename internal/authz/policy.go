package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy 授权策略文件
//
//	grants:
//	  - caller: component:task_ledger
//	    operations: [escrow.deposit, escrow.refund_bounty]
type Policy struct {
	Grants []PolicyEntry `yaml:"grants"`
}

// PolicyEntry 单个调用方的授权列表
type PolicyEntry struct {
	Caller     string   `yaml:"caller"`
	Operations []string `yaml:"operations"`
}

// LoadPolicy 从 YAML 文件加载策略
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy 解析 YAML 策略
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	for i, entry := range policy.Grants {
		if entry.Caller == "" {
			return nil, fmt.Errorf("policy entry %d: caller is required", i)
		}
		if len(entry.Operations) == 0 {
			return nil, fmt.Errorf("policy entry %d (%s): operations are required", i, entry.Caller)
		}
	}
	return &policy, nil
}

// Marshal 序列化为 YAML
func (p *Policy) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Flatten 展开为授权列表
func (p *Policy) Flatten() []Grant {
	var grants []Grant
	for _, entry := range p.Grants {
		for _, op := range entry.Operations {
			grants = append(grants, Grant{Caller: entry.Caller, Operation: op})
		}
	}
	return grants
}

// Merge 合并另一份策略,返回新策略
func (p *Policy) Merge(other *Policy) *Policy {
	merged := &Policy{}
	merged.Grants = append(merged.Grants, p.Grants...)
	if other != nil {
		merged.Grants = append(merged.Grants, other.Grants...)
	}
	return merged
}
