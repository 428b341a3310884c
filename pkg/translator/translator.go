package translator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidDirection is returned for a pair whose codes are empty or equal.
var ErrInvalidDirection = errors.New("source and target language must be two different codes")

// Direction 是当前激活的 (源语言, 目标语言) 有序对
type Direction struct {
	Source string
	Target string
}

// NewDirection 创建方向，两个代码必须非空且互不相同
func NewDirection(source, target string) (Direction, error) {
	d := Direction{Source: strings.TrimSpace(source), Target: strings.TrimSpace(target)}
	if err := d.Validate(); err != nil {
		return Direction{}, err
	}
	return d, nil
}

// Validate 检查方向是否可以提交给翻译服务
func (d Direction) Validate() error {
	if d.Source == "" || d.Target == "" || strings.EqualFold(d.Source, d.Target) {
		return fmt.Errorf("%w (got %q -> %q)", ErrInvalidDirection, d.Source, d.Target)
	}
	return nil
}

// Swap 返回交换源语言和目标语言后的方向
func (d Direction) Swap() Direction {
	return Direction{Source: d.Target, Target: d.Source}
}

func (d Direction) String() string {
	return d.Source + "->" + d.Target
}

// Request 是提交时创建的不可变快照，只被一个翻译任务消费
type Request struct {
	ID        string
	Text      string
	Direction Direction
	CreatedAt time.Time
}

// NewRequest 用当前文本和方向创建请求快照
func NewRequest(text string, d Direction) Request {
	return Request{
		ID:        uuid.New().String(),
		Text:      text,
		Direction: d,
		CreatedAt: time.Now(),
	}
}

// Outcome 是翻译任务交回交互线程的唯一结果：成功 (Err == nil) 或失败
type Outcome struct {
	Request  Request
	Text     string
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// OK 报告任务是否成功
func (o Outcome) OK() bool { return o.Err == nil }
