package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readCredFile(t *testing.T) string {
	t.Helper()
	content, err := os.ReadFile(awsCredentialsPath)
	if err != nil {
		t.Fatalf("Failed to read credentials file: %v", err)
	}
	return string(content)
}

func TestIniWriterCreatesStanza(t *testing.T) {
	setupTestDirs(t)
	writer := IniFileWriter{}

	err := writer.Write("work", &CredentialsInfo{
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}, "eu-west-1")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	content := readCredFile(t)
	for _, want := range []string{
		managedMarker,
		"[work]",
		"aws_access_key_id = AKIATEST",
		"aws_secret_access_key = secret",
		"aws_session_token = token",
		"region = eu-west-1",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected credentials file to contain %q:\n%s", want, content)
		}
	}
}

func TestIniWriterOmitsEmptyOptionals(t *testing.T) {
	setupTestDirs(t)
	writer := IniFileWriter{}

	err := writer.Write("plain", &CredentialsInfo{
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
	}, "")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	content := readCredFile(t)
	if strings.Contains(content, "aws_session_token") {
		t.Error("Expected no session token line")
	}
	if strings.Contains(content, "region =") {
		t.Error("Expected no region line")
	}
}

func TestIniWriterReplacesOwnStanza(t *testing.T) {
	setupTestDirs(t)
	writer := IniFileWriter{}

	if err := writer.Write("work", &CredentialsInfo{AccessKeyID: "OLD", SecretAccessKey: "s"}, ""); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := writer.Write("work", &CredentialsInfo{AccessKeyID: "NEW", SecretAccessKey: "s"}, ""); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content := readCredFile(t)
	if strings.Contains(content, "OLD") {
		t.Error("Expected old stanza replaced")
	}
	if strings.Count(content, "[work]") != 1 {
		t.Errorf("Expected exactly one [work] stanza:\n%s", content)
	}
}

func TestIniWriterPreservesForeignStanzas(t *testing.T) {
	setupTestDirs(t)
	foreign := "[byhand]\naws_access_key_id = MANUAL\naws_secret_access_key = manual-secret\n"
	if err := os.MkdirAll(filepath.Dir(awsCredentialsPath), 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(awsCredentialsPath, []byte(foreign), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	writer := IniFileWriter{}
	if err := writer.Write("work", &CredentialsInfo{AccessKeyID: "AKIATEST", SecretAccessKey: "s"}, ""); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := writer.Remove("work"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	content := readCredFile(t)
	if !strings.Contains(content, "[byhand]") || !strings.Contains(content, "MANUAL") {
		t.Errorf("Expected hand-written stanza preserved:\n%s", content)
	}
	if strings.Contains(content, "[work]") || strings.Contains(content, managedMarker) {
		t.Errorf("Expected managed stanza and marker removed:\n%s", content)
	}
}

func TestIniWriterRemovesOnlyOwnMarker(t *testing.T) {
	setupTestDirs(t)
	writer := IniFileWriter{}

	if err := writer.Write("one", &CredentialsInfo{AccessKeyID: "A1", SecretAccessKey: "s"}, ""); err != nil {
		t.Fatalf("Write(one) failed: %v", err)
	}
	if err := writer.Write("two", &CredentialsInfo{AccessKeyID: "A2", SecretAccessKey: "s"}, ""); err != nil {
		t.Fatalf("Write(two) failed: %v", err)
	}
	if err := writer.Remove("one"); err != nil {
		t.Fatalf("Remove(one) failed: %v", err)
	}

	content := readCredFile(t)
	if strings.Contains(content, "[one]") {
		t.Errorf("Expected [one] removed:\n%s", content)
	}
	if !strings.Contains(content, "[two]") {
		t.Errorf("Expected [two] preserved:\n%s", content)
	}
	if strings.Count(content, managedMarker) != 1 {
		t.Errorf("Expected exactly one marker left:\n%s", content)
	}
}

func TestIniWriterRemoveLastStanzaDeletesFile(t *testing.T) {
	setupTestDirs(t)
	writer := IniFileWriter{}

	if err := writer.Write("only", &CredentialsInfo{AccessKeyID: "A", SecretAccessKey: "s"}, ""); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := writer.Remove("only"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(awsCredentialsPath); !os.IsNotExist(err) {
		t.Error("Expected credentials file removed once empty")
	}
}

func TestIniWriterRemoveFromMissingFile(t *testing.T) {
	setupTestDirs(t)
	if err := (IniFileWriter{}).Remove("ghost"); err != nil {
		t.Errorf("Remove on a missing file should be a no-op, got %v", err)
	}
}
