package credential

import (
	"context"
	"strings"
	"time"

	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
)

// Status summarizes one platform connection for dashboards.
type Status struct {
	IsConnected    bool
	Username       string
	PageName       string
	ExpiresAt      *time.Time
	IsExpiringSoon bool
	IsExpired      bool
}

// ConnectionStatus reports every configured platform of a workspace.
// Platforms without a row, and any read failure, yield the zero Status.
func (m *Manager) ConnectionStatus(ctx context.Context, workspaceID string) map[socialplatform.Platform]Status {
	statuses := make(map[socialplatform.Platform]Status, len(m.platforms))
	for _, p := range m.platforms {
		statuses[p] = Status{}
	}
	ws := strings.TrimSpace(workspaceID)
	if ws == "" {
		return statuses
	}

	accounts, err := m.store.ListSocialAccounts(ctx, ws)
	if err != nil {
		m.logf("connection status for workspace %s: %v", ws, err)
		return statuses
	}

	now := m.now()
	var key []byte
	for _, account := range accounts {
		p := socialplatform.Platform(account.Platform)
		if _, ok := statuses[p]; !ok {
			continue
		}
		status := Status{
			IsConnected: account.IsConnected,
			PageName:    account.PageName,
			ExpiresAt:   account.ExpiresAt,
		}
		if account.ExpiresAt != nil {
			status.IsExpired = now.After(*account.ExpiresAt)
			status.IsExpiringSoon = !status.IsExpired && !account.ExpiresAt.After(now.Add(ExpiringSoonWindow))
		}
		if account.IsConnected && account.CredentialsEncrypted != "" {
			if key == nil {
				key, err = m.workspaceKey(ws)
				if err != nil {
					m.logf("connection status key for workspace %s: %v", ws, err)
				}
			}
			if key != nil {
				var creds Credentials
				if err := m.cipher.Decrypt(account.CredentialsEncrypted, key, &creds); err == nil {
					status.Username = creds.Username
				}
			}
		}
		statuses[p] = status
	}
	return statuses
}
