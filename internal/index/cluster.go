package index

// Clusters computes connected components of blobs under the spatialNear
// relation. level=0 uses only the close ("near[0]") edges; level=1 also
// follows second-close ("near[1]") edges. Unlike trajognize's
// find_clusters_in_sdistlists_recursively, the component is discovered with
// an explicit FIFO work queue rather than recursion, since a single cluster
// can in principle span every blob on a crowded frame and Go goroutine
// stacks, while growable, have no need to pay that growth cost here.
//
// Returns the list of clusters (blob indices) and, for each blob, the
// cluster index it belongs to.
func Clusters(spatialNear [][2][]int, level int) (clusters [][]int, clusterOf []int) {
	n := len(spatialNear)
	clusterOf = make([]int, n)
	for i := range clusterOf {
		clusterOf[i] = -1
	}
	clusters = make([][]int, 0)

	var queue []int
	for i := 0; i < n; i++ {
		if clusterOf[i] > -1 {
			continue
		}
		clusterNum := len(clusters)
		members := []int{i}
		clusterOf[i] = clusterNum

		queue = queue[:0]
		queue = append(queue, i)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			neighbors := spatialNear[cur][0]
			if level != 0 {
				neighbors = append(append([]int{}, neighbors...), spatialNear[cur][1]...)
			}
			for _, j := range neighbors {
				if clusterOf[j] > -1 {
					continue
				}
				clusterOf[j] = clusterNum
				members = append(members, j)
				queue = append(queue, j)
			}
		}
		clusters = append(clusters, members)
	}
	return clusters, clusterOf
}
