package feed

// Subject layout for the change feed. One subject per record so consumers
// can filter server-side with wildcards: "cleanflow.work_items.>" for every
// item, "cleanflow.collectors.<id>" for a single collector's positions.
const (
	CollectionWorkItems  = "work_items"
	CollectionCollectors = "collectors"
	CollectionProfiles   = "profiles"

	subjectPrefix = "cleanflow"
)

// Subject builds the publish subject for a record.
func Subject(collection, id string) string {
	return subjectPrefix + "." + collection + "." + id
}

// CollectionSubjects returns the wildcard subscription for a collection.
func CollectionSubjects(collection string) string {
	return subjectPrefix + "." + collection + ".>"
}
