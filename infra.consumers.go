package main

import (
	"context"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// boltMirrorConsumer drains the mutation queues and applies each event to
// the local bolt backup so it converges towards the primary collection.
type boltMirrorConsumer struct {
	logger *zap.Logger
	queue  Queuer
	mirror MirrorStorage
}

func NewBoltMirrorConsumer(logger *zap.Logger, q Queuer, mirror MirrorStorage) Consumer {
	return &boltMirrorConsumer{logger, q, mirror}
}

func (bc *boltMirrorConsumer) Consume(ctx context.Context, qids ...string) error {
	var book Book
	var err error
	var qid string
	for {
		qid, book, err = bc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			bc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			bc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		switch qid {
		case CreateQueue, UpdateQueue:
			if err = bc.mirror.Put(ctx, book); err != nil {
				bc.logger.Error("consumer: failed to mirror record", zap.Int64("book.id", book.ID), zap.Error(err))
			}
		case DeleteQueue:
			if err = bc.mirror.Delete(ctx, book.ID); err != nil {
				bc.logger.Error("consumer: failed to remove mirrored record", zap.Int64("book.id", book.ID), zap.Error(err))
			}
		default:
			bc.logger.Warn("consumer: received book on unknown queue id", zap.String("qid", qid), zap.Int64("book.id", book.ID))
		}
	}
}
