package app

import "study-session-service/internal/domain"

// DefaultProblemCount is the number of problems in one task phase.
const DefaultProblemCount = 30

// GenerateProblems builds n problems, 1-indexed, in three difficulty tiers:
// 1-10 easy, 11-20 medium, 21 onwards hard.
func GenerateProblems(src RandomSource, n int) []domain.Problem {
	if n <= 0 {
		return nil
	}
	problems := make([]domain.Problem, 0, n)
	for i := 1; i <= n; i++ {
		var p domain.Problem
		switch {
		case i <= 10:
			p = easyProblem(src)
		case i <= 20:
			p = mediumProblem(src)
		default:
			p = hardProblem(src)
		}
		p.Index = i
		problems = append(problems, p)
	}
	return problems
}

func easyProblem(src RandomSource) domain.Problem {
	a, b := randInt(src, 2, 9), randInt(src, 1, 9)
	op := domain.OpSubtract
	if src.Float64() < 0.6 {
		op = domain.OpAdd
	}
	return makeProblem(a, b, op)
}

func mediumProblem(src RandomSource) domain.Problem {
	if src.Float64() < 0.5 {
		a, b := randInt(src, 11, 99), randInt(src, 2, 30)
		op := domain.OpSubtract
		if src.Float64() < 0.5 {
			op = domain.OpAdd
		}
		return makeProblem(a, b, op)
	}
	return makeProblem(randInt(src, 3, 9), randInt(src, 3, 9), domain.OpMultiply)
}

func hardProblem(src RandomSource) domain.Problem {
	if src.Float64() < 0.5 {
		if src.Float64() < 0.5 {
			return makeProblem(randInt(src, 12, 19), randInt(src, 3, 9), domain.OpMultiply)
		}
		b := randInt(src, 3, 9)
		// a is a multiple of b so the quotient is exact.
		a := b * randInt(src, 4, 12)
		return makeProblem(a, b, domain.OpDivide)
	}
	return makeProblem(randInt(src, 50, 199), randInt(src, 20, 49), domain.OpSubtract)
}

func makeProblem(a, b int, op domain.Operator) domain.Problem {
	return domain.Problem{A: a, B: b, Op: op, Correct: op.Apply(a, b)}
}
