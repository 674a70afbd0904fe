// Package cli provides the kubewarden-airgap commands.
//
// Example usage:
//
//	kubewarden-airgap list --cert-manager -o manifest.json
//	kubewarden-airgap pull -m manifest.json --workdir ./cache
//	kubewarden-airgap push -m manifest.json --workdir ./cache --registry registry.local:5000
//	kubewarden-airgap install --workdir ./cache --registry registry.local:5000
package cli
