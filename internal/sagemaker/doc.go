// Package sagemaker — адаптер оркестратора для AWS SageMaker Pipelines.
//
// Адаптер переводит deployment (граф шагов Conveyor) в definition-документ
// SageMaker pipeline, создаёт и запускает pipeline через AWS SDK,
// переводит статусы выполнения в статусы Conveyor и строит ссылки
// на Studio и CloudWatch.
package sagemaker
