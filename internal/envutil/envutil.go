// Package envutil разбивает длинные переменные окружения на части
// и собирает их обратно.
//
// SageMaker ограничивает длину значения переменной окружения
// для Processing шагов. Значения длиннее лимита разбиваются на части
// NAME_CHUNK_0, NAME_CHUNK_1, ... и восстанавливаются entrypoint'ом
// внутри контейнера.
package envutil

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SageMakerProcessorSizeLimit — максимальная длина значения переменной
// окружения для SageMaker Processing шага.
const SageMakerProcessorSizeLimit = 256

// chunkSuffix — суффикс имени части: NAME_CHUNK_0, NAME_CHUNK_1, ...
const chunkSuffix = "_CHUNK_"

// maxChunks — максимальное число частей одной переменной.
const maxChunks = 10

// Split разбивает значения длиннее sizeLimit на части прямо в env.
//
// Исходная переменная удаляется, вместо неё добавляются части
// NAME_CHUNK_0..NAME_CHUNK_n. Значения короче лимита не трогаются.
func Split(env map[string]string, sizeLimit int) error {
	for key, value := range env {
		if len(value) <= sizeLimit {
			continue
		}

		chunks := chunkString(value, sizeLimit)
		if len(chunks) > maxChunks {
			return fmt.Errorf(
				"environment variable %s needs %d chunks of size %d, at most %d allowed",
				key, len(chunks), sizeLimit, maxChunks,
			)
		}

		delete(env, key)
		for i, chunk := range chunks {
			env[fmt.Sprintf("%s%s%d", key, chunkSuffix, i)] = chunk
		}
	}
	return nil
}

// Reconstruct собирает разбитые переменные обратно прямо в env.
//
// Части склеиваются в порядке индекса и удаляются; восстановленное
// значение записывается под исходным именем.
func Reconstruct(env map[string]string) error {
	// originalName → индекс части → значение
	chunks := make(map[string]map[int]string)

	for key, value := range env {
		idx := strings.LastIndex(key, chunkSuffix)
		if idx <= 0 {
			continue
		}

		index, err := strconv.Atoi(key[idx+len(chunkSuffix):])
		if err != nil {
			// Не наша часть — просто переменная с похожим именем.
			continue
		}

		name := key[:idx]
		if chunks[name] == nil {
			chunks[name] = make(map[int]string)
		}
		chunks[name][index] = value
		delete(env, key)
	}

	for name, parts := range chunks {
		indexes := make([]int, 0, len(parts))
		for i := range parts {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)

		// Индексы обязаны быть непрерывными от нуля.
		var sb strings.Builder
		for want, got := range indexes {
			if want != got {
				return fmt.Errorf("environment variable %s is missing chunk %d", name, want)
			}
			sb.WriteString(parts[got])
		}
		env[name] = sb.String()
	}

	return nil
}

// chunkString режет строку на части длиной не более size.
func chunkString(s string, size int) []string {
	var chunks []string
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}
