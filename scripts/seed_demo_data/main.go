package main

import (
	"fmt"
	"log"

	"github.com/habitlog/internal/config"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/service"
	"go.uber.org/zap"
)

// 演示数据生成器
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}
	defer func() { _ = db.Close(gdb) }()

	store := service.NewHabitStore(db.NewKVStore(gdb), zap.NewNop())

	fmt.Println("开始生成演示数据...")
	created, err := seedDemoHabits(store, demoHabits, demoHistoryDays)
	if err != nil {
		log.Fatal("生成演示数据失败:", err)
	}
	if created == 0 {
		fmt.Println("习惯已存在，跳过创建")
		return
	}
	fmt.Printf("✅ 已创建 %d 个习惯，回填最近 %d 天的打卡记录\n", created, demoHistoryDays)
}

const demoHistoryDays = 30

type demoHabit struct {
	name     string
	category string
	// pattern 按天循环，'x' 完成、'-' 跳过、'.' 未记录
	pattern string
}

var demoHabits = []demoHabit{
	{name: "Morning run", category: "health", pattern: "xxxxxx."},
	{name: "Read 20 pages", category: "learning", pattern: "xx.x"},
	{name: "Inbox zero", category: "productivity", pattern: "xxxxxxx"},
	{name: "Call family", category: "social", pattern: "x.....-"},
	{name: "Meditate", category: "health", pattern: "x.x..x."},
	{name: "Journal", category: "other", pattern: "...x"},
}

// seedDemoHabits 创建习惯并按 pattern 从 days-1 天前回填到今天。
// 已有习惯时不做任何修改，返回 0。
func seedDemoHabits(store *service.HabitStore, habits []demoHabit, days int) (int, error) {
	if len(store.GetHabits()) > 0 {
		return 0, nil
	}

	today := store.Now()
	for _, seed := range habits {
		habit, err := store.AddHabit(service.HabitInput{Name: seed.name, Category: seed.category})
		if err != nil {
			return 0, fmt.Errorf("create %s: %w", seed.name, err)
		}

		for offset := days - 1; offset >= 0; offset-- {
			date := today.AddDate(0, 0, -offset)
			switch seed.pattern[offset%len(seed.pattern)] {
			case 'x':
				_, err = store.MarkHabitComplete(habit.ID, date)
			case '-':
				_, err = store.MarkHabitSkipped(habit.ID, date)
			default:
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("backfill %s on %s: %w", seed.name, db.FormatDate(date), err)
			}
		}
	}
	return len(habits), nil
}
