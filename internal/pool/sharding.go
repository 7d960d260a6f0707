package pool

// ShardStates deals the state codes across workers round-robin: worker i
// owns states[i], states[i+workers], and so on. An empty state list
// yields empty shards, which claim from every state.
func ShardStates(states []string, workers int) [][]string {
	if workers <= 0 {
		return nil
	}
	shards := make([][]string, workers)
	for i, state := range states {
		w := i % workers
		shards[w] = append(shards[w], state)
	}
	return shards
}
