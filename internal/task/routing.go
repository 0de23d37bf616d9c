package task

import "sort"

// DefaultQueue receives every task without an explicit route.
const DefaultQueue = "default"

// PriorityQueue is where latency-sensitive tasks are routed by default.
const PriorityQueue = "priority"

// Routes maps task names to queue names. It is read once at startup.
type Routes map[string]string

// DefaultRoutes returns the built-in routing table.
func DefaultRoutes() Routes {
	return Routes{
		TaskSendNotification: PriorityQueue,
	}
}

// QueueFor returns the queue that task name is routed to.
func (r Routes) QueueFor(name string) string {
	if q, ok := r[name]; ok && q != "" {
		return q
	}
	return DefaultQueue
}

// Queues returns the distinct queues named by the table plus the default queue,
// sorted, with the default queue last.
func (r Routes) Queues() []string {
	seen := map[string]bool{DefaultQueue: true}
	var queues []string
	for _, q := range r {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queues = append(queues, q)
	}
	sort.Strings(queues)
	return append(queues, DefaultQueue)
}
