package manifest

import (
	"fmt"
	"strings"

	"kubewarden-airgap/pkg/errx"
	"kubewarden-airgap/pkg/reference"
)

// ChartRole is the part a chart plays in an install.
type ChartRole string

const (
	RoleCertManager ChartRole = "cert-manager"
	RoleCRDs        ChartRole = "crds"
	RoleController  ChartRole = "controller"
	RoleDefaults    ChartRole = "defaults"
)

// CoreRoles are the roles every manifest must provide, in install order.
var CoreRoles = []ChartRole{RoleCRDs, RoleController, RoleDefaults}

// RoleOf classifies a chart by name. cert-manager must match exactly; the core
// roles match either the bare role or a "-<role>" suffix, so
// "kubewarden-controller" and "controller" are both the controller.
func RoleOf(chart reference.Chart) (ChartRole, bool) {
	if chart.Name == string(RoleCertManager) {
		return RoleCertManager, true
	}
	for _, role := range CoreRoles {
		if chart.Name == string(role) || strings.HasSuffix(chart.Name, "-"+string(role)) {
			return role, true
		}
	}
	return "", false
}

// ChartsByRole parses every chart entry and indexes it by role. Charts without
// a role are ignored. It fails when a chart is malformed, when a role appears
// twice, or when a core role is missing.
func (m *Manifest) ChartsByRole() (map[ChartRole]reference.Chart, error) {
	byRole := make(map[ChartRole]reference.Chart, len(m.Charts))
	for _, entry := range m.Charts {
		chart, err := reference.ParseChart(entry)
		if err != nil {
			return nil, invalid(fmt.Sprintf("invalid chart %q", entry), err)
		}
		role, ok := RoleOf(chart)
		if !ok {
			continue
		}
		if prev, dup := byRole[role]; dup {
			return nil, errx.Manifest(fmt.Sprintf("charts %q and %q both provide %s", prev.String(), entry, role)).
				WithBase(ErrInvalidManifest).
				WithContext("role", string(role))
		}
		byRole[role] = chart
	}

	var missing []ChartRole
	for _, role := range CoreRoles {
		if _, ok := byRole[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return nil, errx.Manifest(fmt.Sprintf("manifest is missing required chart(s): %s", missingCharts(missing))).
			WithBase(ErrMissingChart).
			WithContext("missing", missingCharts(missing))
	}
	return byRole, nil
}

// IncludesCertManager reports whether the manifest carries a cert-manager
// chart. It is the only signal the installer uses to install cert-manager.
func (m *Manifest) IncludesCertManager() bool {
	for _, entry := range m.Charts {
		chart, err := reference.ParseChart(entry)
		if err != nil {
			continue
		}
		if role, ok := RoleOf(chart); ok && role == RoleCertManager {
			return true
		}
	}
	return false
}
