package services

import (
	"fmt"
	"log"

	"gshost/internal/server/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// CronScheduler 定时任务调度器
type CronScheduler struct {
	cron        *cron.Cron
	db          *gorm.DB
	nodeService *NodeService
}

// NewCronScheduler 创建定时任务调度器
func NewCronScheduler(db *gorm.DB, nodeService *NodeService) *CronScheduler {
	// 创建cron实例，支持秒级精度
	c := cron.New(cron.WithSeconds())

	return &CronScheduler{
		cron:        c,
		db:          db,
		nodeService: nodeService,
	}
}

// Start 启动定时任务调度器
func (cs *CronScheduler) Start() error {
	// 1. 每30秒标记心跳超时的节点为离线
	_, err := cs.cron.AddFunc("*/30 * * * * *", func() {
		marked, err := cs.nodeService.MarkOfflineNodes()
		if err != nil {
			log.Printf("[定时清理] 标记离线节点失败: %v", err)
		} else if marked > 0 {
			log.Printf("[定时清理] 已标记 %d 个节点离线", marked)
		}
	})
	if err != nil {
		return fmt.Errorf("添加离线标记任务失败: %w", err)
	}

	// 2. 每10分钟输出分配台账统计，便于观察池水位
	_, err = cs.cron.AddFunc("0 */10 * * * *", func() {
		if err := cs.logAllocationStats(); err != nil {
			log.Printf("[台账统计] 统计分配记录失败: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加台账统计任务失败: %w", err)
	}

	cs.cron.Start()
	log.Println("定时任务调度器已启动")
	return nil
}

// Stop 停止调度器，等待进行中的任务结束
func (cs *CronScheduler) Stop() {
	ctx := cs.cron.Stop()
	<-ctx.Done()
	log.Println("定时任务调度器已停止")
}

// logAllocationStats 输出分配台账的活跃/历史数量
func (cs *CronScheduler) logAllocationStats() error {
	var active, total int64
	if err := cs.db.Model(&models.AddressAllocation{}).Where("released_at IS NULL").Count(&active).Error; err != nil {
		return err
	}
	if err := cs.db.Model(&models.AddressAllocation{}).Count(&total).Error; err != nil {
		return err
	}

	log.Printf("[台账统计] 活跃分配 %d, 历史记录 %d", active, total)
	return nil
}
