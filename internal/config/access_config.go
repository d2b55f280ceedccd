package config

type AccessConfig interface {
	GetAccessPolicyFile() string
}

type Access struct{}

var _ AccessConfig = Access{}

func (Access) GetAccessPolicyFile() string {
	return GetEnv("ACCESS_POLICY_FILE", "")
}
