// Package cluster checks that the target cluster can take an install plan
// before any chart is installed.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"kubewarden-airgap/internal/airgap"
	"kubewarden-airgap/pkg/errx"
)

// MinKubernetesVersion is the oldest API server the charts support.
const MinKubernetesVersion = "1.21.0"

var (
	ErrClusterUnreachable = errors.New("cluster is unreachable")
	ErrUnsupportedCluster = errors.New("cluster version is not supported")
	ErrInvalidName        = errors.New("invalid release or namespace name")
	ErrReleaseExists      = errors.New("release already installed")
)

func lookup(error) (string, string) {
	return errx.CodeInstall, errx.DescInstall
}

func preflightError(base error, msg string, cause error) *errx.Error {
	return errx.FromSentinel(base, lookup, msg, cause)
}

// NamespaceStatus is what the preflight learned about one namespace.
type NamespaceStatus struct {
	Name string
	// Exists is false when helm will create the namespace.
	Exists bool
	// Readable is false when the caller may not get the namespace.
	Readable bool
}

// Report summarises a successful preflight.
type Report struct {
	ServerVersion string
	Namespaces    []NamespaceStatus
}

// Preflight runs read-only checks against the cluster.
type Preflight struct {
	client kubernetes.Interface
	logger *zap.Logger
}

func NewPreflight(client kubernetes.Interface, logger *zap.Logger) *Preflight {
	return &Preflight{client: client, logger: logger}
}

// NewClientset builds a clientset from the usual kubeconfig loading rules.
// Empty arguments fall back to $KUBECONFIG, ~/.kube/config and the current
// context.
func NewClientset(kubeconfig, kubeContext string) (kubernetes.Interface, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, preflightError(ErrClusterUnreachable, fmt.Sprintf("failed to load kubeconfig: %v", err), err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, preflightError(ErrClusterUnreachable, fmt.Sprintf("failed to create Kubernetes client: %v", err), err)
	}
	return clientset, nil
}

// Check validates names, the server version, the target namespaces and that
// no release of the plan is already installed.
func (p *Preflight) Check(ctx context.Context, steps []airgap.InstallStep) (*Report, error) {
	for _, step := range steps {
		if err := validateName("release", step.Request.Release); err != nil {
			return nil, err
		}
		if err := validateName("namespace", step.Request.Namespace); err != nil {
			return nil, err
		}
	}

	info, err := p.client.Discovery().ServerVersion()
	if err != nil {
		return nil, preflightError(ErrClusterUnreachable,
			fmt.Sprintf("failed to reach the Kubernetes API: %v", err), err)
	}
	if err := checkVersion(info.GitVersion); err != nil {
		return nil, err
	}
	report := &Report{ServerVersion: info.GitVersion}
	p.logger.Debug("cluster reachable", zap.String("version", info.GitVersion))

	exists := make(map[string]bool)
	for _, step := range steps {
		ns := step.Request.Namespace
		if _, done := exists[ns]; done {
			continue
		}
		status, err := p.namespace(ctx, ns)
		if err != nil {
			return nil, err
		}
		exists[ns] = status.Exists
		report.Namespaces = append(report.Namespaces, status)
	}

	for _, step := range steps {
		if !exists[step.Request.Namespace] {
			continue
		}
		if err := p.releaseAbsent(ctx, step.Request.Release, step.Request.Namespace); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (p *Preflight) namespace(ctx context.Context, name string) (NamespaceStatus, error) {
	_, err := p.client.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	switch {
	case err == nil:
		return NamespaceStatus{Name: name, Exists: true, Readable: true}, nil
	case apierrors.IsNotFound(err):
		return NamespaceStatus{Name: name, Readable: true}, nil
	case apierrors.IsForbidden(err):
		// helm --create-namespace decides later; assume present.
		p.logger.Debug("namespace not readable", zap.String("namespace", name), zap.Error(err))
		return NamespaceStatus{Name: name, Exists: true}, nil
	default:
		return NamespaceStatus{}, preflightError(ErrClusterUnreachable,
			fmt.Sprintf("failed to get namespace %s: %v", name, err), err).
			WithContext("namespace", name)
	}
}

// releaseAbsent looks for the helm storage secrets of release.
func (p *Preflight) releaseAbsent(ctx context.Context, release, namespace string) error {
	selector := labels.SelectorFromSet(labels.Set{"owner": "helm", "name": release}).String()
	secrets, err := p.client.CoreV1().Secrets(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	switch {
	case apierrors.IsForbidden(err):
		p.logger.Debug("cannot list helm releases", zap.String("namespace", namespace), zap.Error(err))
		return nil
	case err != nil:
		return preflightError(ErrClusterUnreachable,
			fmt.Sprintf("failed to list releases in %s: %v", namespace, err), err).
			WithContext("namespace", namespace)
	case len(secrets.Items) > 0:
		return preflightError(ErrReleaseExists,
			fmt.Sprintf("release %s already exists in namespace %s; uninstall it or use helm upgrade", release, namespace), nil).
			WithContextMap(map[string]any{"release": release, "namespace": namespace})
	}
	return nil
}

func validateName(kind, name string) error {
	if msgs := validation.IsDNS1123Label(name); len(msgs) > 0 {
		return preflightError(ErrInvalidName,
			fmt.Sprintf("invalid %s name %q: %s", kind, name, strings.Join(msgs, "; ")), nil).
			WithContext(kind, name)
	}
	return nil
}

func checkVersion(gitVersion string) error {
	v, err := semver.NewVersion(gitVersion)
	if err != nil {
		return preflightError(ErrUnsupportedCluster,
			fmt.Sprintf("cannot parse server version %q: %v", gitVersion, err), err)
	}
	minVersion := semver.MustParse(MinKubernetesVersion)
	// Compare the release only; distribution suffixes sort as prereleases.
	core, _ := v.SetPrerelease("")
	if core.LessThan(minVersion) {
		return preflightError(ErrUnsupportedCluster,
			fmt.Sprintf("Kubernetes %s is older than the supported minimum %s", gitVersion, MinKubernetesVersion), nil).
			WithContext("version", gitVersion)
	}
	return nil
}
