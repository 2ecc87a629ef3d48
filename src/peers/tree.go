package peers

// BuildTree arranges ids, in the given order, as a complete tree where node i
// has children fanout*i+1 ... fanout*i+fanout. It returns the neighbors of
// every id: its parent, if any, followed by its children.
func BuildTree(ids []string, fanout int) map[string][]string {
	if fanout < 1 {
		fanout = 1
	}

	res := make(map[string][]string, len(ids))
	for _, id := range ids {
		res[id] = []string{}
	}

	for i, id := range ids {
		if i > 0 {
			parent := ids[(i-1)/fanout]
			res[id] = append(res[id], parent)
		}
		for c := fanout*i + 1; c <= fanout*i+fanout && c < len(ids); c++ {
			res[id] = append(res[id], ids[c])
		}
	}

	return res
}
