package kubernetes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
)

// Service labels consumed by the resolver.
const (
	labelEnabled         = "xtcp-gate-enabled"
	labelDatabaseType    = "xtcp-gate-database-type"
	labelDeploymentID    = "xtcp-gate-deployment-id"
	labelPooled          = "xtcp-gate-pooled"
	labelDestinationPort = "xtcp-gate-destination-port"
)

// K8sResolver looks up backends among cluster Services carrying the gate
// labels. Lookups are served from an informer cache, not from the API server.
type K8sResolver struct {
	store cache.Store
}

func NewK8sResolver(clientset *kubernetes.Clientset) *K8sResolver {
	factory := informers.NewSharedInformerFactory(clientset, 10*time.Minute)
	serviceInformer := factory.Core().V1().Services().Informer()

	stopCh := make(chan struct{})
	go factory.Start(stopCh)
	factory.WaitForCacheSync(stopCh)

	return &K8sResolver{
		store: serviceInformer.GetStore(),
	}
}

func (r *K8sResolver) Resolve(ctx context.Context, metadata core.RoutingMetadata, databaseType core.DatabaseType) (string, error) {
	deploymentID, ok := metadata["deployment_id"]
	if !ok {
		return "", fmt.Errorf("metadata missing 'deployment_id' (check connection string format: user.deployment_id[.pool])")
	}
	pooled := metadata["pooled"] // "true" or "false"

	for _, obj := range r.store.List() {
		svc, ok := obj.(*corev1.Service)
		if !ok {
			continue
		}

		labels := svc.Labels
		if labels[labelEnabled] != "true" ||
			labels[labelDatabaseType] != string(databaseType) ||
			labels[labelDeploymentID] != deploymentID ||
			labels[labelPooled] != pooled {
			continue
		}

		port := servicePort(svc, labels[labelDestinationPort])
		if port == 0 {
			continue
		}

		return fmt.Sprintf("%s.%s.svc.cluster.local:%d", svc.Name, svc.Namespace, port), nil
	}

	return "", fmt.Errorf("service not found for deployment_id='%s', pooled='%s'", deploymentID, pooled)
}

// servicePort picks the port named by the destination-port label, falling back
// to the first declared port.
func servicePort(svc *corev1.Service, destination string) int32 {
	if len(svc.Spec.Ports) == 0 {
		return 0
	}

	if destination != "" {
		if wanted, err := strconv.Atoi(destination); err == nil {
			for _, p := range svc.Spec.Ports {
				if p.Port == int32(wanted) {
					return p.Port
				}
			}
		}
	}

	return svc.Spec.Ports[0].Port
}
