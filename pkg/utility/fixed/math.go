package fixed

func Mean(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}
	sum := Zero
	for _, point := range points {
		sum = sum.Add(point)
	}
	return sum.DivInt(len(points))
}

// StdDev is the population standard deviation around mean.
func StdDev(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}
	sum := Zero
	for _, point := range points {
		diff := point.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}
	return sum.DivInt(len(points)).Sqrt()
}

// DownsideDev only looks at the points below target.
func DownsideDev(points []Point, target Point) Point {
	sum := Zero
	count := 0
	for _, point := range points {
		if point.Lt(target) {
			diff := point.Sub(target)
			sum = sum.Add(diff.Mul(diff))
			count++
		}
	}
	if count <= 1 {
		return Zero
	}
	return sum.DivInt(count).Sqrt()
}

func SharpeRatio(returns []Point, riskFreeRate Point) Point {
	mean := Mean(returns)
	volatility := StdDev(returns, mean)
	if volatility.IsZero() {
		return Zero
	}
	return mean.Sub(riskFreeRate).Div(volatility)
}

func SortinoRatio(returns []Point, riskFreeRate Point) Point {
	downside := DownsideDev(returns, riskFreeRate)
	if downside.IsZero() {
		return Zero
	}
	return Mean(returns).Sub(riskFreeRate).Div(downside)
}
