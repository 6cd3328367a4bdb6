// Package oxia implements metadata.MetadataStore on Oxia.
//
// Usage:
//
//	store, err := oxia.New(ctx, oxia.Config{
//	    ServiceAddress: "localhost:6648",
//	    Namespace:      "ybroute/my-cluster",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	kvs, err := store.List(ctx, keys.SplitsPrefix("my-cluster"), "", 0)
//
// Each cluster uses its own namespace so that split records of clusters
// sharing an Oxia deployment never collide.
//
// Versions returned by this package are Oxia version ids plus one, which
// leaves zero free to mean "key does not exist" in compare-and-set.
package oxia
