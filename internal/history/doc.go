// Package history хранит пары запрос/ответ, которые производит диалоговый
// конвейер, и отдаёт их по пользователю или глобально, от новых к старым,
// с пагинацией.
//
// Хранилище построено поверх kv.Backend, у которого нет транзакций и
// вторичных индексов, поэтому порядок и пагинация синтезируются вручную:
//
//   - entry:{task_id} хранит саму запись (источник истины);
//   - user:{platform}:{user_id} и global:all хранят Index: ограниченный
//     список (task_id, timestamp), отсортированный по убыванию времени.
//
// Записи индекса это слабые ссылки: запись может истечь раньше индекса,
// такие "висячие" ссылки при чтении просто пропускаются.
//
// Обновление индекса это read-modify-write без CAS. Два одновременных
// Save в один индекс могут прочитать одно состояние, и второй перезапишет
// добавление первого. Сама запись при этом сохраняется и доступна по Get.
// Потеря ссылки допустима, испорченный список нет. WithIndexLocking
// сериализует обновления одного ключа внутри процесса.
//
// Store работает по принципу fail-open: ошибки логируются и превращаются в
// false, отсутствие значения или короткий список, но никогда не
// возвращаются вызывающему конвейеру.
package history
