package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvConsumerKey    = "TWEETCOLLECTOR_CONSUMER_KEY"
	EnvConsumerSecret = "TWEETCOLLECTOR_CONSUMER_SECRET"
	EnvAccessToken    = "TWEETCOLLECTOR_ACCESS_TOKEN"
	EnvAccessSecret   = "TWEETCOLLECTOR_ACCESS_SECRET"
)

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve builds an account from the environment. Any name is accepted;
// an empty name becomes DefaultAccountName.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	account := &Account{
		Name:           name,
		ConsumerKey:    os.Getenv(EnvConsumerKey),
		ConsumerSecret: os.Getenv(EnvConsumerSecret),
		AccessToken:    os.Getenv(EnvAccessToken),
		AccessSecret:   os.Getenv(EnvAccessSecret),
		LastModified:   time.Now(),
	}
	if !account.Complete() {
		return nil, ErrCredentialsNotFound
	}
	if account.Name == "" {
		account.Name = DefaultAccountName
	}
	return account, nil
}

// List returns a single account if the environment is complete
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
