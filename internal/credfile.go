package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var awsCredentialsPath = filepath.Join(os.Getenv("HOME"), ".aws", "credentials")

const managedMarker = "; Managed by leapp"

// CredentialsFileWriter materializes short-lived credentials into the AWS
// credentials file and removes them again on deactivation.
type CredentialsFileWriter interface {
	Write(profileName string, creds *CredentialsInfo, region string) error
	Remove(profileName string) error
}

// IniFileWriter rewrites managed stanzas of ~/.aws/credentials in place,
// leaving stanzas it does not own untouched.
type IniFileWriter struct{}

func (IniFileWriter) Write(profileName string, creds *CredentialsInfo, region string) error {
	lines, err := readCredentialLines()
	if err != nil {
		return err
	}

	lines = stripProfileStanza(lines, profileName)

	// Clean up trailing empty lines before appending
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > 0 {
		lines = append(lines, "")
	}

	lines = append(lines, managedMarker)
	lines = append(lines, fmt.Sprintf("[%s]", profileName))
	lines = append(lines, fmt.Sprintf("aws_access_key_id = %s", creds.AccessKeyID))
	lines = append(lines, fmt.Sprintf("aws_secret_access_key = %s", creds.SecretAccessKey))
	if creds.SessionToken != "" {
		lines = append(lines, fmt.Sprintf("aws_session_token = %s", creds.SessionToken))
	}
	if region != "" {
		lines = append(lines, fmt.Sprintf("region = %s", region))
	}
	lines = append(lines, "")

	return writeCredentialLines(lines)
}

func (IniFileWriter) Remove(profileName string) error {
	lines, err := readCredentialLines()
	if err != nil {
		return err
	}
	lines = stripProfileStanza(lines, profileName)

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		if err := os.Remove(awsCredentialsPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	lines = append(lines, "")
	return writeCredentialLines(lines)
}

func readCredentialLines() ([]string, error) {
	content, err := os.ReadFile(awsCredentialsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return strings.Split(string(content), "\n"), nil
}

func writeCredentialLines(lines []string) error {
	if err := os.MkdirAll(filepath.Dir(awsCredentialsPath), 0700); err != nil {
		return err
	}
	output := strings.Join(lines, "\n")
	if err := os.WriteFile(awsCredentialsPath, []byte(output), 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// stripProfileStanza removes the named stanza together with the managed
// marker comment right above it.
func stripProfileStanza(lines []string, profileName string) []string {
	header := fmt.Sprintf("[%s]", profileName)
	out := []string{}
	skipSection := false
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if strings.HasPrefix(trimmed, managedMarker) {
			// Drop the marker only when the stanza it announces is the
			// one being removed.
			belongs := false
			for j := i + 1; j < len(lines); j++ {
				tj := strings.TrimSpace(lines[j])
				if tj == "" || strings.HasPrefix(tj, ";") {
					continue
				}
				belongs = tj == header
				break
			}
			if belongs {
				continue
			}
			out = append(out, lines[i])
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			skipSection = trimmed == header
		}

		if !skipSection {
			out = append(out, lines[i])
		}
	}
	return out
}
