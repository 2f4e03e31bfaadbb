package aws

import "context"

// MockClient is a test double for the Client interface.
type MockClient struct {
	Identity    *CallerIdentity
	IdentityErr error
	Roles       map[string]bool
	RoleErr     error
	Prefixes    map[string]bool // "bucket/prefix" → has objects
	PrefixErr   error
	Objects     map[string]bool // "bucket/key" → exists
	ObjectErr   error
}

// NewMockClient creates a new MockClient with default values.
func NewMockClient() *MockClient {
	return &MockClient{
		Identity: &CallerIdentity{
			Account: "123456789012",
			ARN:     "arn:aws:iam::123456789012:user/test",
			UserID:  "AIDA12345",
		},
		Roles:    make(map[string]bool),
		Prefixes: make(map[string]bool),
		Objects:  make(map[string]bool),
	}
}

func (m *MockClient) VerifyCredentials(_ context.Context) (*CallerIdentity, error) {
	return m.Identity, m.IdentityErr
}

func (m *MockClient) RoleExists(_ context.Context, roleName string) (bool, error) {
	return m.Roles[roleName], m.RoleErr
}

func (m *MockClient) PrefixHasObjects(_ context.Context, bucket, prefix string) (bool, error) {
	return m.Prefixes[bucket+"/"+prefix], m.PrefixErr
}

func (m *MockClient) ObjectExists(_ context.Context, bucket, key string) (bool, error) {
	return m.Objects[bucket+"/"+key], m.ObjectErr
}
