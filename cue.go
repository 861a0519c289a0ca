package s3m

type cueKey struct {
	order int
	row   int
}

// cueRegistry holds the callbacks waiting for a song position.
type cueRegistry struct {
	waiting map[cueKey][]func(*Sequencer)
}

func (r *cueRegistry) add(key cueKey, f func(*Sequencer)) {
	if r.waiting == nil {
		r.waiting = make(map[cueKey][]func(*Sequencer))
	}
	r.waiting[key] = append(r.waiting[key], f)
}

// take removes and returns the callbacks for key, in registration order.
func (r *cueRegistry) take(key cueKey) []func(*Sequencer) {
	list, ok := r.waiting[key]
	if !ok {
		return nil
	}
	delete(r.waiting, key)
	return list
}

func (r *cueRegistry) len() int {
	n := 0
	for _, list := range r.waiting {
		n += len(list)
	}
	return n
}
