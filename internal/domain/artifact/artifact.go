package artifact

import "fmt"

// DefaultCluster is the cluster name used when none is configured.
const DefaultCluster = "ceph"

const (
	bootstrapOSDDir = "/var/lib/ceph/bootstrap-osd"
	confDir         = "/etc/ceph"
)

// Artifact is one cluster-identity file distributed during bootstrap.
// Path is the absolute runtime location of the file on the node; the staging
// tree mirrors the destination tree, so the same path joined under
// <fetch_root>/<fsid> is the staging location.
type Artifact struct {
	// Name is a short label used in logs and error messages.
	Name string
	// Path is the absolute destination path, mirrored in the staging tree.
	Path string
}

// BootstrapOSDKeyring returns the bootstrap OSD keyring artifact for a cluster.
// It is always part of the effective set.
func BootstrapOSDKeyring(cluster string) Artifact {
	return Artifact{
		Name: "bootstrap-osd keyring",
		Path: fmt.Sprintf("%s/%s.keyring", bootstrapOSDDir, cluster),
	}
}

// AdminKeyring returns the client.admin keyring artifact for a cluster.
func AdminKeyring(cluster string) Artifact {
	return Artifact{
		Name: "admin keyring",
		Path: fmt.Sprintf("%s/%s.client.admin.keyring", confDir, cluster),
	}
}

// ClusterConf returns the cluster configuration file artifact.
func ClusterConf(cluster string) Artifact {
	return Artifact{
		Name: "cluster conf",
		Path: fmt.Sprintf("%s/%s.conf", confDir, cluster),
	}
}

// Resolve builds the effective artifact set for one sync run: the bootstrap
// OSD keyring first, then the admin keyring and cluster conf when
// copyAdminKey is enabled. The order only affects log sequencing; artifacts
// are synced independently.
func Resolve(cluster string, copyAdminKey bool) []Artifact {
	if cluster == "" {
		cluster = DefaultCluster
	}

	set := []Artifact{BootstrapOSDKeyring(cluster)}
	if copyAdminKey {
		set = append(set, AdminKeyring(cluster), ClusterConf(cluster))
	}

	return set
}
