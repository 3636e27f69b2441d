package tessera

// IntMax returns the maximum of all arguments.
func IntMax(a int, elements ...int) int {
	res := a
	for _, val := range elements {
		if val > res {
			res = val
		}
	}
	return res
}

// IntMin returns the minimum of all arguments.
func IntMin(a int, elements ...int) int {
	res := a
	for _, val := range elements {
		if val < res {
			res = val
		}
	}
	return res
}

// numWorkers returns numRoutines, at least 1 and at most jobs (if jobs > 0).
func numWorkers(numRoutines, jobs int) int {
	if numRoutines <= 0 {
		numRoutines = 1
	}
	if jobs > 0 {
		numRoutines = IntMin(numRoutines, jobs)
	}
	return numRoutines
}
