// Package page holds the computable parts of the marketing pages: navbar state,
// section highlighting and the statistic counter tweens.
package page

import (
	"math"
	"strconv"
)

const (
	// NavbarThreshold is the scroll offset after which the navbar turns solid.
	NavbarThreshold = 50
	// AnchorOffset keeps anchored sections clear of the fixed navbar.
	AnchorOffset = 80

	tweenDuration = 2000
	tweenInterval = 16
)

// Section is a page section with its top offset in pixels.
type Section struct {
	ID  string `json:"id"`
	Top int    `json:"top"`
}

// NavbarSolid 判断导航栏是否应切换为白底阴影样式。
func NavbarSolid(scrollY int) bool {
	return scrollY > NavbarThreshold
}

// ScrollTarget 计算锚点平滑滚动的目标位置。
func ScrollTarget(offsetTop int) int {
	return offsetTop - AnchorOffset
}

// ActiveSection returns the id of the last section whose top, shifted by offset,
// has been scrolled past. Sections are expected in document order.
func ActiveSection(sections []Section, scrollY, offset int) string {
	current := ""
	for _, section := range sections {
		if scrollY >= section.Top-offset {
			current = section.ID
		}
	}
	return current
}

// CounterFrames renders the 2s/16ms counter tween. Targets of 1000 and above are
// shown in thousands with one decimal ("1.2k").
func CounterFrames(target int) []string {
	if target <= 0 {
		return []string{formatCount(0, target)}
	}

	increment := float64(target) / (tweenDuration / tweenInterval)
	frames := make([]string, 0, tweenDuration/tweenInterval+1)

	count := 0.0
	for {
		count += increment
		done := count >= float64(target)
		if done {
			count = float64(target)
		}
		frames = append(frames, formatCount(count, target))
		if done {
			return frames
		}
	}
}

func formatCount(count float64, target int) string {
	if target >= 1000 {
		return strconv.FormatFloat(math.Floor(count/100)/10, 'f', -1, 64) + "k"
	}
	return strconv.Itoa(int(math.Floor(count)))
}

// CounterSteps 复现按 speed 等分递增的计数动画，每步向上取整。越过目标的那一帧
// 照样显示（如 1985 会先显示 1990），下一帧再落回目标值。
func CounterSteps(target, speed int) []int {
	if speed <= 0 {
		speed = 1
	}
	if target <= 0 {
		return []int{target}
	}

	increment := float64(target) / float64(speed)
	steps := make([]int, 0, speed+1)
	count := 0
	for count < target {
		count = int(math.Ceil(float64(count) + increment))
		steps = append(steps, count)
	}
	if count != target {
		steps = append(steps, target)
	}
	return steps
}
