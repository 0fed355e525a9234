package authstore

import "testing"

func TestIssueAndAuthenticate(t *testing.T) {
	s := New()
	keyID, secret, err := s.Issue("1", "alice", "operator")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if keyID == "" || secret == "" {
		t.Fatal("Issue() returned an empty keyID or secret")
	}

	id, err := s.Authenticate(keyID, secret)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Username != "alice" || id.Role != "operator" {
		t.Errorf("Identity = %+v, want Username=alice Role=operator", id)
	}
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	s := New()
	keyID, _, err := s.Issue("1", "alice", "operator")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := s.Authenticate(keyID, "wrong-secret"); err != ErrUnknownKey {
		t.Errorf("Authenticate() error = %v, want ErrUnknownKey", err)
	}
}

func TestAuthenticateRejectsUnknownKey(t *testing.T) {
	s := New()
	if _, err := s.Authenticate("nonexistent", "whatever"); err != ErrUnknownKey {
		t.Errorf("Authenticate() error = %v, want ErrUnknownKey", err)
	}
}

func TestRevoke(t *testing.T) {
	s := New()
	keyID, secret, _ := s.Issue("1", "alice", "operator")
	s.Revoke(keyID)
	if _, err := s.Authenticate(keyID, secret); err != ErrUnknownKey {
		t.Errorf("Authenticate() after Revoke() error = %v, want ErrUnknownKey", err)
	}
}
