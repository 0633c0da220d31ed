package secret

import "testing"

func TestEnvVarName(t *testing.T) {
	if got := EnvVar("ab-12.x"); got != "UBLOCKLY_SECRET_AB_12_X" {
		t.Errorf("EnvVar = %q", got)
	}
}

func TestEnvOverridesInner(t *testing.T) {
	inner := NewMemoryStore()
	inner.Set("repo1", []byte("stored"))
	inner.Set("repo2", []byte("stored2"))
	s := &EnvStore{Inner: inner}

	t.Setenv(EnvVar("repo1"), "from-env")

	if v, _ := s.Get("repo1"); string(v) != "from-env" {
		t.Errorf("repo1 = %q", v)
	}
	if v, _ := s.Get("repo2"); string(v) != "stored2" {
		t.Errorf("repo2 = %q", v)
	}
	s.Delete("repo2")
	if v, _ := s.Get("repo2"); v != nil {
		t.Errorf("repo2 after delete = %q", v)
	}
}

func TestEnvStoreWithoutInner(t *testing.T) {
	s := &EnvStore{}
	if err := s.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get("k"); v != nil || err != nil {
		t.Errorf("Get = %q, %v", v, err)
	}
}
