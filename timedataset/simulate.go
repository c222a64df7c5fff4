package timedataset

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateDays returns n consecutive calendar days beginning at start
func GenerateDays(n int, start time.Time) []time.Time {
	start = TruncateDay(start)
	t := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		t = append(t, AddDays(start, i))
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

// SetConst sets every point in [start, end) to val
func (s Series) SetConst(t []time.Time, val float64, start, end time.Time) Series {
	n := len(s)
	for i := 0; i < n; i++ {
		if (t[i].After(start) || t[i].Equal(start)) && t[i].Before(end) {
			s[i] = val
		}
	}
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, val)
	}
	return Series(y)
}

// GenerateRandomWalk returns a level that starts at start and moves by a gaussian
// step with standard deviation stepStd every point.
func GenerateRandomWalk(n int, start, stepStd float64, seed uint64) Series {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	y := make([]float64, 0, n)
	level := start
	for i := 0; i < n; i++ {
		y = append(y, level)
		level += rng.NormFloat64() * stepStd
	}
	return Series(y)
}

// GenerateNoise returns independent gaussian noise with the given standard deviation
func GenerateNoise(n int, std float64, seed uint64) Series {
	rng := rand.New(rand.NewPCG(seed, seed^0xbf58476d1ce4e5b9))
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, rng.NormFloat64()*std)
	}
	return Series(y)
}

// GenerateStep returns a series that is 0 before at and jump on or after at
func GenerateStep(t []time.Time, at time.Time, jump float64) Series {
	y := make([]float64, len(t))
	for i := range t {
		if t[i].After(at) || t[i].Equal(at) {
			y[i] = jump
		}
	}
	return Series(y)
}
