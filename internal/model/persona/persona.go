package persona

import "time"

// BusyPolicy 决定助手回复未完成时再次发送消息的处理方式。
type BusyPolicy string

const (
	// BusyReject drops a send while the typing indicator is shown.
	BusyReject BusyPolicy = "reject"
	// BusyQueue accepts the send and answers after the pending reply.
	BusyQueue BusyPolicy = "queue"
)

// ReplyDelay 描述模拟“思考”的延迟：Max 大于 Min 时在 [Min, Max) 内均匀随机。
type ReplyDelay struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Counter is a statistic animated on the landing page.
type Counter struct {
	Label  string `json:"label"`
	Target int    `json:"target"`
	Suffix string `json:"suffix,omitempty"`
}

// Chart is a bar chart dataset rendered next to the counters.
type Chart struct {
	Label  string   `json:"label"`
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// Persona captures the widget attributes exposed to the frontend.
type Persona struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Organization  string     `json:"organization"`
	Greeting      string     `json:"greeting"`
	GreetingFrom  string     `json:"greetingFrom"`
	Placeholder   string     `json:"placeholder"`
	QuickReplies  []string   `json:"quickReplies"`
	RulesetID     string     `json:"rulesetId"`
	Delay         ReplyDelay `json:"delay"`
	Busy          BusyPolicy `json:"busyPolicy"`
	UploadEnabled bool       `json:"uploadEnabled"`
	SectionOffset int        `json:"sectionOffset"`
	CounterStyle  string     `json:"counterStyle"`
	Counters      []Counter  `json:"counters,omitempty"`
	Chart         *Chart     `json:"chart,omitempty"`
}

// Seed provides the two widgets shipped with the sites.
func Seed() []Persona {
	return []Persona{
		{
			ID:            "xiaoke",
			Name:          "小科",
			Organization:  "波中教育集团",
			Greeting:      "您好！我是小科，波中教育集团的AI助手。我可以为您提供课程咨询、入学申请、校园设施等信息。有什么可以帮助您的吗？",
			GreetingFrom:  "system",
			Placeholder:   "请输入您的问题...",
			QuickReplies:  []string{"课程设置", "入学要求", "校园设施"},
			RulesetID:     "xiaoke",
			Delay:         ReplyDelay{Min: time.Second, Max: 3 * time.Second},
			Busy:          BusyQueue,
			SectionOffset: 200,
			CounterStyle:  "steps",
			Counters: []Counter{
				{Label: "升学率", Target: 98, Suffix: "%"},
				{Label: "教师来自国家和地区", Target: 20, Suffix: "+"},
				{Label: "平均教学经验（年）", Target: 8, Suffix: "+"},
				{Label: "校园绿化率", Target: 40, Suffix: "%"},
			},
			Chart: &Chart{
				Label:  "录取人数",
				Labels: []string{"哈佛大学", "耶鲁大学", "牛津大学", "剑桥大学", "麻省理工", "斯坦福大学", "普林斯顿", "哥伦比亚"},
				Data:   []int{12, 15, 10, 8, 14, 16, 9, 11},
			},
		},
		{
			ID:            "jiaohaoyun",
			Name:          "交好运",
			Organization:  "山东科技大学交通学院",
			Greeting:      "你好！我是\"交好运\"智能助手，很高兴为你服务。我可以帮你解答关于山东科技大学交通学院的各种问题，包括课程信息、作业辅导、学院政策等。请问有什么可以帮助你的吗？",
			GreetingFrom:  "ai",
			Placeholder:   "请输入你的问题...",
			QuickReplies:  []string{"怎么查课表", "考试安排", "作业批改", "学院介绍"},
			RulesetID:     "jiaohaoyun",
			Delay:         ReplyDelay{Min: 1500 * time.Millisecond, Max: 1500 * time.Millisecond},
			Busy:          BusyReject,
			UploadEnabled: true,
			SectionOffset: 100,
			CounterStyle:  "tween",
			Counters: []Counter{
				{Label: "建院年份", Target: 1985},
				{Label: "教职工", Target: 120, Suffix: "+"},
				{Label: "教授", Target: 25},
				{Label: "副教授", Target: 40},
			},
		},
	}
}
