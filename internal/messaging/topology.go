package messaging

// Binding routes messages published with RoutingKey on the exchange into Queue.
type Binding struct {
	Queue      string
	RoutingKey string
}

// Topology is a durable topic exchange with its durable queues.
type Topology struct {
	Exchange string
	Bindings []Binding
}

// Queue returns the binding for a queue name.
func (t Topology) Queue(name string) (Binding, bool) {
	for _, b := range t.Bindings {
		if b.Queue == name {
			return b, true
		}
	}
	return Binding{}, false
}
