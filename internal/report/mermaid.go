package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/authlens/internal/model"
)

// GenerateLoginPie creates a Mermaid pie chart of accepted vs failed logins.
// It returns "" when neither counter is known.
func GenerateLoginPie(s Summary) string {
	if s.Accepted == Absent && s.Failed == Absent {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie title Login outcomes\n")
	if s.Accepted != Absent {
		sb.WriteString(fmt.Sprintf("    \"Accepted\" : %s\n", s.Accepted))
	}
	if s.Failed != Absent {
		sb.WriteString(fmt.Sprintf("    \"Failed\" : %s\n", s.Failed))
	}
	sb.WriteString("```\n")
	return sb.String()
}

// GenerateAttackGraph creates a Mermaid flowchart linking suspect IPs to the
// accounts they targeted, weighted by attempts.
func GenerateAttackGraph(incidents []model.Incident) string {
	if len(incidents) == 0 {
		return ""
	}

	// ip -> user -> attempts
	edges := make(map[string]map[string]int)
	for _, inc := range incidents {
		if edges[inc.IP] == nil {
			edges[inc.IP] = make(map[string]int)
		}
		for user, n := range inc.Users {
			edges[inc.IP][user] += n
		}
	}

	ips := sortedKeys(edges)
	userSet := make(map[string]bool)
	for _, users := range edges {
		for u := range users {
			userSet[u] = true
		}
	}
	users := make([]string, 0, len(userSet))
	for u := range userSet {
		users = append(users, u)
	}
	sort.Strings(users)

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")

	for _, ip := range ips {
		sb.WriteString(fmt.Sprintf("    %s[%s]:::suspect\n", ipToNodeID(ip), ip))
	}
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("    %s([%s])\n", userToNodeID(u), escapeLabel(u)))
	}
	sb.WriteString("\n")

	for _, ip := range ips {
		for _, u := range sortedKeys(edges[ip]) {
			sb.WriteString(fmt.Sprintf("    %s -->|%d| %s\n", ipToNodeID(ip), edges[ip][u], userToNodeID(u)))
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef suspect fill:#FFB6C1,stroke:#FF0000\n")
	sb.WriteString("```\n")

	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ipToNodeID(ip string) string {
	// Convert IP to valid Mermaid node ID
	r := strings.NewReplacer(".", "_", ":", "_")
	return "IP" + r.Replace(ip)
}

func userToNodeID(user string) string {
	var sb strings.Builder
	sb.WriteString("U_")
	for _, c := range user {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			sb.WriteRune(c)
		} else {
			sb.WriteString(fmt.Sprintf("_%x", c))
		}
	}
	return sb.String()
}

func escapeLabel(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "[", "(", "]", ")").Replace(s)
}
